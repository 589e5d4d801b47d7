package flags

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/bacalhau-project/jobconf/cmd/util/output"
	"github.com/bacalhau-project/jobconf/pkg/models"
)

// A Parser is a function that can convert a string into a native object.
type Parser[T any] func(string) (T, error)

// A Stringer is a function that can convert a native object into a string.
type Stringer[T any] func(*T) string

// A ValueFlag is a pflag.Value that parses a command line string into a
// native value.
type ValueFlag[T any] struct {
	value    *T
	parser   Parser[T]
	stringer Stringer[T]
	typeStr  string
}

// Set implements pflag.Value
func (s *ValueFlag[T]) Set(input string) error {
	value, err := s.parser(input)
	if err != nil {
		return err
	}
	*s.value = value
	return nil
}

// String implements pflag.Value
func (s *ValueFlag[T]) String() string {
	return s.stringer(s.value)
}

// Type implements pflag.Value
func (s *ValueFlag[T]) Type() string {
	return s.typeStr
}

// An ArrayValueFlag appends every occurrence of the flag to a slice.
type ArrayValueFlag[T any] struct {
	value    *[]T
	parser   Parser[T]
	stringer Stringer[T]
	typeStr  string
}

// Set implements pflag.Value
func (s *ArrayValueFlag[T]) Set(input string) error {
	for _, part := range strings.Split(input, ",") {
		value, err := s.parser(strings.TrimSpace(part))
		if err != nil {
			return err
		}
		*s.value = append(*s.value, value)
	}
	return nil
}

// String implements pflag.Value
func (s *ArrayValueFlag[T]) String() string {
	strs := make([]string, 0, len(*s.value))
	for i := range *s.value {
		strs = append(strs, s.stringer(&(*s.value)[i]))
	}
	return strings.Join(strs, ",")
}

// Type implements pflag.Value
func (s *ArrayValueFlag[T]) Type() string {
	return s.typeStr
}

func OutputFormatFlag(value *output.OutputFormat) *ValueFlag[output.OutputFormat] {
	return formatFlag(value, output.AllFormats)
}

func NonTabularFormatFlag(value *output.OutputFormat) *ValueFlag[output.OutputFormat] {
	return formatFlag(value, output.NonTabularFormats)
}

func formatFlag(value *output.OutputFormat, allowed []output.OutputFormat) *ValueFlag[output.OutputFormat] {
	return &ValueFlag[output.OutputFormat]{
		value: value,
		parser: func(s string) (output.OutputFormat, error) {
			o := output.OutputFormat(strings.ToLower(s))
			if !slices.Contains(allowed, o) {
				return "", fmt.Errorf("should be one of %q", allowed)
			}
			return o, nil
		},
		stringer: func(o *output.OutputFormat) string { return string(*o) },
		typeStr:  "format",
	}
}

// ToolClassFlag collects tool classes, checking each is a known class.
func ToolClassFlag(value *[]string) *ArrayValueFlag[string] {
	return &ArrayValueFlag[string]{
		value: value,
		parser: func(s string) (string, error) {
			if !slices.Contains(models.ToolClasses(), s) {
				return "", fmt.Errorf("should be one of %q", models.ToolClasses())
			}
			return s, nil
		},
		stringer: func(s *string) string { return *s },
		typeStr:  "class",
	}
}
