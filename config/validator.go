package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their config key ("server.port") rather than
// the Go field name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("host", validateHost); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(validateProviders, Config{})
	return v
}

// ConfigError is one invalid config key.
type ConfigError struct {
	Key     string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v, env %s%s)", e.Key, e.Message, e.Value, EnvPrefix, envName(e.Key))
}

// ValidationErrors lists every invalid key of a Config.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	lines := make([]string, 0, len(e)+1)
	lines = append(lines, fmt.Sprintf("configuration validation failed (%d errors):", len(e)))
	for _, ce := range e {
		lines = append(lines, "  - "+ce.Error())
	}
	return strings.Join(lines, "\n")
}

// ValidateWithDetails validates cfg and returns ValidationErrors for field
// failures.
func ValidateWithDetails(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, ConfigError{
			Key:     key,
			Message: describe(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

var tagMessages = map[string]string{
	"required":   "this field is required",
	"host":       "must be a hostname or IP address",
	"openai_key": "requires providers.openai_api_key or providers.openai_base_url",
	"ollama_url": "requires providers.ollama_base_url",
	"model":      "requires a model name",
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	}
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	return "failed validation: " + fe.Tag()
}

// validateHost accepts hostnames, IPv4 and IPv6 addresses. Empty is allowed.
func validateHost(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), func(c rune) bool {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return false
		case strings.ContainsRune("-.:_", c):
			return false
		}
		return true
	}) < 0
}

// validateProviders checks that every enabled capability slot can reach its
// provider and names a model.
func validateProviders(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	slots := []struct{ key, mode, model string }{
		{"embedding", cfg.Embedding.Provider, cfg.Embedding.Model},
		{"llm", cfg.LLM.Provider, cfg.LLM.Model},
		{"reranker", cfg.Reranker.Provider, cfg.Reranker.Model},
	}
	for _, s := range slots {
		mode := s.mode
		switch {
		case mode == "openai" && cfg.Providers.OpenAIAPIKey == "" && cfg.Providers.OpenAIBaseURL == "":
			sl.ReportError(mode, s.key+".provider", "Provider", "openai_key", "")
		case mode == "ollama" && cfg.Providers.OllamaBaseURL == "":
			sl.ReportError(mode, s.key+".provider", "Provider", "ollama_url", "")
		}
		if mode != "none" && s.model == "" {
			sl.ReportError(s.model, s.key+".model", "Model", "model", "")
		}
	}
}
