package pipeline

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// LoadOptions decodes the TOML file at path over base. Keys missing from
// the file keep their base value; unknown keys are rejected.
//
//	group_width = 2
//	crop_padding = 5
//	stem_kernel = { width = 3, height = 1 }
//	render_timeout = "90s"
func LoadOptions(path string, base Options) (Options, error) {
	opts := base
	md, err := toml.DecodeFile(path, &opts)
	if err != nil {
		return base, errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "load config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return base, errors.New(errors.ErrCodeInvalidConfiguration, "unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return opts, nil
}
