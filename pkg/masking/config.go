package masking

// DefaultPattern is the token that replaces fully masked values.
const DefaultPattern = "***"

// Config controls what a Masker hides and how.
type Config struct {
	// EnableMasking turns masking of response data and error messages on.
	EnableMasking bool `yaml:"enable_masking"`

	// MaskSensitiveFields controls whether fields matching SensitiveFields
	// are replaced in response data and variables.
	MaskSensitiveFields bool `yaml:"mask_sensitive_fields"`

	// LogSafeMode turns masking of variables, query summaries and audit data
	// on.
	LogSafeMode bool `yaml:"log_safe_mode"`

	// MaskingPattern replaces fully masked values and sits between the
	// revealed ends of partially masked ones.
	MaskingPattern string `yaml:"masking_pattern"`

	// SensitiveFields are field-name fragments whose values are replaced
	// entirely (or removed from audit data).
	SensitiveFields []string `yaml:"sensitive_fields"`

	// PartialMaskingFields are field-name fragments whose string values keep
	// their first and last characters.
	PartialMaskingFields []string `yaml:"partial_masking_fields"`
}

// DefaultSensitiveFields are the field-name fragments masked by default:
// identifiers, creation timestamps and dimension identifiers.
func DefaultSensitiveFields() []string {
	return []string{"id", "created", "dimension"}
}

// DefaultPartialMaskingFields are the field-name fragments partially masked
// by default: names, image references and air dates.
func DefaultPartialMaskingFields() []string {
	return []string{"name", "image", "air_date"}
}

// DefaultConfig returns the default configuration. Masking of response data
// and errors is enabled only outside development.
func DefaultConfig(development bool) Config {
	return Config{
		EnableMasking:        !development,
		MaskSensitiveFields:  true,
		LogSafeMode:          true,
		MaskingPattern:       DefaultPattern,
		SensitiveFields:      DefaultSensitiveFields(),
		PartialMaskingFields: DefaultPartialMaskingFields(),
	}
}
