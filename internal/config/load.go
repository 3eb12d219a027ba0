package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadDispatch reads the dispatch section from the config file at path.
// Keys absent from the file keep their stock defaults, so a reload after
// deleting a key reverts that knob. The result is validated before it is
// returned; the caller decides what a bad file means.
func LoadDispatch(path string) (DispatchConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return DispatchConfig{}, fmt.Errorf("reading config: %w", err)
	}

	d := DefaultDispatch()
	if err := v.UnmarshalKey("dispatch", &d); err != nil {
		return DispatchConfig{}, fmt.Errorf("parsing dispatch settings: %w", err)
	}
	if err := ValidateDispatch(d); err != nil {
		return DispatchConfig{}, err
	}
	return d, nil
}
