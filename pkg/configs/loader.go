package configs

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// FileLoader reads a Config from a YAML, JSON or TOML file.
type FileLoader struct {
	viper *viper.Viper
}

func NewFileLoader(file string) (*FileLoader, error) {
	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "error reading in config file")
	}

	return &FileLoader{viper: v}, nil
}

// Load overlays the settings present in the file onto base. Settings the
// file does not mention keep their base value.
func (l *FileLoader) Load(base Config) (Config, error) {
	cfg := base
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return base, errors.Wrap(err, "error on config unmarshal")
	}

	return cfg, nil
}

// OnChange watches the file and calls fn with the reloaded config,
// overlaid on base, every time it changes. Reload errors go to onErr.
func (l *FileLoader) OnChange(base Config, fn func(Config), onErr func(error)) {
	l.viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.Load(base)
		if err != nil {
			onErr(errors.Wrapf(err, "reloading %s", e.Name))
			return
		}
		fn(cfg)
	})
	l.viper.WatchConfig()
}
