package config

type Option func(options *Params)

func WithFileType(ftype string) Option {
	return func(options *Params) {
		options.FileType = ftype
	}
}

func WithDefaultConfig(cfg Settings) Option {
	return func(options *Params) {
		options.DefaultConfig = cfg
	}
}
