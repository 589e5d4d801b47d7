package models

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slices"
)

const (
	LimitRegisteredUserConcurrentJobs   = "registered_user_concurrent_jobs"
	LimitAnonymousUserConcurrentJobs    = "anonymous_user_concurrent_jobs"
	LimitEnvironmentUserConcurrentJobs  = "environment_user_concurrent_jobs"
	LimitEnvironmentTotalConcurrentJobs = "environment_total_concurrent_jobs"
	LimitConcurrentJobs                 = "concurrent_jobs"
	LimitWalltime                       = "walltime"
	LimitTotalWalltime                  = "total_walltime"
	LimitOutputSize                     = "output_size"

	// LegacyLimitPrefix is the prefix of destination scoped limit types in the
	// markup vocabulary. The normalized vocabulary uses EnvironmentLimitPrefix.
	LegacyLimitPrefix      = "destination_"
	EnvironmentLimitPrefix = "environment_"
)

// LimitTypes lists the limit types of the normalized vocabulary.
func LimitTypes() []string {
	return []string{
		LimitRegisteredUserConcurrentJobs,
		LimitAnonymousUserConcurrentJobs,
		LimitEnvironmentUserConcurrentJobs,
		LimitEnvironmentTotalConcurrentJobs,
		LimitConcurrentJobs,
		LimitWalltime,
		LimitTotalWalltime,
		LimitOutputSize,
	}
}

// NormalizeLimitType rewrites markup limit types to the normalized vocabulary.
func NormalizeLimitType(limitType string) string {
	if strings.HasPrefix(limitType, LegacyLimitPrefix) {
		return EnvironmentLimitPrefix + strings.TrimPrefix(limitType, LegacyLimitPrefix)
	}
	return limitType
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func documentValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("limit_type", func(fl validator.FieldLevel) bool {
			return slices.Contains(LimitTypes(), NormalizeLimitType(fl.Field().String()))
		})
	})
	return validate
}

const (
	ToolClassLocal          = "local"
	ToolClassRequiresGalaxy = "requires_galaxy"
)

// ToolClasses lists the tool classes a tool entry may target.
func ToolClasses() []string {
	return []string{ToolClassLocal, ToolClassRequiresGalaxy}
}

const (
	AssignDBPreassign            = "db-preassign"
	AssignDBTransactionIsolation = "db-transaction-isolation"
	AssignDBSkipLocked           = "db-skip-locked"
)

// AssignmentMethods lists the ways jobs can be assigned to handlers.
func AssignmentMethods() []string {
	return []string{AssignDBPreassign, AssignDBTransactionIsolation, AssignDBSkipLocked}
}
