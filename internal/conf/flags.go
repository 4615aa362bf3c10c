package conf

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/orchidlab/labpredict/internal/errors"
)

// flagKeyAnnotation records the settings key a command-line flag overrides
const flagKeyAnnotation = "labpredict_settings_key"

// BindFlagKey marks flag as an override for the settings key, e.g. the
// refresh --workers flag for "prediction.workers". The binding is applied
// by BindFlags once the running command is known, so several commands may
// override the same key without clobbering each other.
func BindFlagKey(fs *pflag.FlagSet, flag, key string) error {
	if err := fs.SetAnnotation(flag, flagKeyAnnotation, []string{key}); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("flag", flag).
			Build()
	}
	return nil
}

// BindFlags binds every annotated flag of fs to viper. Call it before Load.
// Flags that were not set on the command line keep the file, environment
// or default value.
func BindFlags(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[flagKeyAnnotation]
		if len(keys) == 0 {
			return
		}
		if err := viper.BindPFlag(keys[0], f); err != nil {
			errs = append(errs, err)
		}
	})
	if err := errors.Join(errs...); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind_flags").
			Build()
	}
	return nil
}
