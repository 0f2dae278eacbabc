package lean

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
)

const (
	DefaultExchange = "SMART"
	DefaultCurrency = "USD"
)

// DownloadRequest describes one download invocation. Build it once and pass it by value.
type DownloadRequest struct {
	Symbol       string    `json:"symbol" validate:"required"`
	SecurityType string    `json:"securityType" validate:"required"`
	Resolution   string    `json:"resolution" validate:"required,resolution"`
	From         time.Time `json:"from" validate:"required"`
	To           time.Time `json:"to" validate:"required,gtfield=From"`
	DataDir      string    `json:"dataDir" validate:"required"`
	Exchange     string    `json:"exchange,omitempty"`
	Currency     string    `json:"currency,omitempty"`
}

// NewValidator returns a validator that knows the "resolution" tag.
func NewValidator() *validator.Validate {
	validate := validator.New()
	//nolint:errcheck // the tag name is a constant and the function is non-nil
	validate.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		_, err := ParseResolution(fl.Field().String())

		return err == nil
	})

	return validate
}

// Validate checks required fields, the resolution and that From is strictly before To.
func (r DownloadRequest) Validate() error {
	if err := NewValidator().Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeValidationFailed, "invalid download request", err)
	}

	return nil
}

// ResolutionValue returns the parsed resolution.
func (r DownloadRequest) ResolutionValue() (Resolution, error) {
	return ParseResolution(r.Resolution)
}

// Directory is DirectoryFor applied to the request.
func (r DownloadRequest) Directory() string {
	return DirectoryFor(r.Symbol, r.SecurityType, r.Resolution, r.DataDir)
}

// Filename is FilenameFor applied to the request.
func (r DownloadRequest) Filename(date civil.Date) (string, error) {
	return FilenameFor(r.Symbol, r.Resolution, date)
}

// WithDefaults fills exchange and currency when they are blank.
func (r DownloadRequest) WithDefaults() DownloadRequest {
	if strings.TrimSpace(r.Exchange) == "" {
		r.Exchange = DefaultExchange
	}

	if strings.TrimSpace(r.Currency) == "" {
		r.Currency = DefaultCurrency
	}

	return r
}
