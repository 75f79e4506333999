// SPDX-License-Identifier: MIT

// Package totp wraps RFC 6238 one-time passwords for the second factor.
package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Period = 30
	// Skew accepts codes from one step before or after the current one.
	Skew   = 1
	qrSize = 256
)

// Enrollment is a freshly generated secret with its provisioning data.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"otpauthUri"`
	QRCode string `json:"qrCode"` // base64 PNG
}

// Generate creates a secret for account under issuer.
func Generate(issuer, account string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("encode qr: %w", err)
	}
	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func opts() totp.ValidateOpts {
	return totp.ValidateOpts{Period: Period, Skew: Skew, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1}
}

// Validate reports whether code is valid for secret at t.
func Validate(code, secret string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, opts())
	return err == nil && ok
}

// Code returns the code for secret at t.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, opts())
}
