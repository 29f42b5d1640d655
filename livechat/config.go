package livechat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config controls how the SDK connects.
type Config struct {
	URL   string `koanf:"url" validate:"required,url"`
	Token string `koanf:"token"` // bearer token sent with the handshake

	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gte=0"`
	ReadTimeout      time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout     time.Duration `koanf:"write_timeout" validate:"gte=0"`

	// Reconnect delay is min(ReconnectDelay * 2^attempt, MaxReconnectDelay).
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts" validate:"gte=0"`
	ReconnectDelay       time.Duration `koanf:"reconnect_delay" validate:"gt=0"`
	MaxReconnectDelay    time.Duration `koanf:"max_reconnect_delay" validate:"gtefield=ReconnectDelay"`

	// TypingTimeout is how long a remote typing indicator stays on without refresh.
	TypingTimeout time.Duration `koanf:"typing_timeout" validate:"gt=0"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     20 * time.Second,
		ReadTimeout:          0,
		WriteTimeout:         10 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Second,
		MaxReconnectDelay:    10 * time.Second,
		TypingTimeout:        3 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config and returns an ErrorInvalidConfig error naming
// every offending field.
func (c Config) Validate() error {
	return validateStruct(c)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return WrapError(ErrorInvalidConfig, "validation failed", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return WrapError(ErrorInvalidConfig, "invalid "+strings.Join(fields, ", "), err)
}
