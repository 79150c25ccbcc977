package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/payportal/pkg/domain"
)

const (
	// TOTP parameters
	totpDigits = otp.DigitsSix
	totpPeriod = 30
	totpSkew   = 2 // Allow ±60 seconds clock drift

	qrCodeSize = 200
)

// TOTPEngine generates TOTP secrets and validates codes (RFC 6238, SHA-1, 6 digits, 30s).
type TOTPEngine struct {
	issuer string
}

// NewTOTPEngine creates an engine that labels secrets with issuer.
func NewTOTPEngine(issuer string) *TOTPEngine {
	return &TOTPEngine{issuer: issuer}
}

// Generate creates a fresh secret for accountName along with its otpauth URI
// and a PNG QR code rendering of that URI.
func (e *TOTPEngine) Generate(accountName string) (*domain.MFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &domain.MFASetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCodeDataURI:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrBuf.Bytes()),
	}, nil
}

// Validate reports whether code is valid for secret at the given time, within
// ±2 periods. Malformed input is simply invalid.
func (e *TOTPEngine) Validate(code, secret string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
