package automation

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeConfig decodes a resolved free-form step config map into the typed
// config struct for one step type. Decoding is weakly typed so templated
// string values ("3", "true") land in numeric and boolean fields. Missing
// required fields are validated by the handlers, not here, so decode errors
// always indicate a malformed map rather than a merely incomplete one.
func DecodeConfig[T any](raw map[string]interface{}) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return out, NewStepError(ErrCodeConfigInvalid, "invalid step config: %v", err)
	}
	return out, nil
}
