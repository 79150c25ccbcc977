package domain

// MFAStatus is the enrollment stage of a user's TOTP factor.
type MFAStatus int

const (
	MFAStatusUnenrolled MFAStatus = iota
	MFAStatusPendingConfirmation
	MFAStatusEnabled
)

func (s MFAStatus) String() string {
	switch s {
	case MFAStatusUnenrolled:
		return "unenrolled"
	case MFAStatusPendingConfirmation:
		return "pending_confirmation"
	case MFAStatusEnabled:
		return "enabled"
	}
	return "unknown"
}

// MFAState is Unenrolled, PendingConfirmation(secret) or Enabled(secret).
// Secrets are stored encrypted; the state never holds a pending and an
// authoritative secret at the same time.
type MFAState struct {
	status MFAStatus
	secret string
}

// MFAUnenrolled returns the state of a user without a TOTP factor.
func MFAUnenrolled() MFAState {
	return MFAState{status: MFAStatusUnenrolled}
}

// MFAPendingConfirmation returns the state after a secret was issued but not confirmed.
func MFAPendingConfirmation(encryptedSecret string) MFAState {
	return MFAState{status: MFAStatusPendingConfirmation, secret: encryptedSecret}
}

// MFAEnabled returns the state of a confirmed TOTP factor.
func MFAEnabled(encryptedSecret string) MFAState {
	return MFAState{status: MFAStatusEnabled, secret: encryptedSecret}
}

// Status returns the enrollment stage.
func (m MFAState) Status() MFAStatus {
	return m.status
}

// EnabledSecret returns the authoritative secret. Only this secret may verify a login.
func (m MFAState) EnabledSecret() (string, bool) {
	if m.status != MFAStatusEnabled {
		return "", false
	}
	return m.secret, true
}

// PendingSecret returns the provisional secret awaiting confirmation.
func (m MFAState) PendingSecret() (string, bool) {
	if m.status != MFAStatusPendingConfirmation {
		return "", false
	}
	return m.secret, true
}

// Columns maps the state onto the (mfa_enabled, mfa_secret, mfa_temp_secret) columns.
func (m MFAState) Columns() (enabled bool, secret, tempSecret *string) {
	switch m.status {
	case MFAStatusEnabled:
		s := m.secret
		return true, &s, nil
	case MFAStatusPendingConfirmation:
		s := m.secret
		return false, nil, &s
	}
	return false, nil, nil
}

// MFAStateFromColumns rebuilds the state from its stored columns.
// An enabled flag wins over a stray temp secret.
func MFAStateFromColumns(enabled bool, secret, tempSecret *string) MFAState {
	if enabled && secret != nil && *secret != "" {
		return MFAEnabled(*secret)
	}
	if tempSecret != nil && *tempSecret != "" {
		return MFAPendingConfirmation(*tempSecret)
	}
	return MFAUnenrolled()
}

// MFASetup is returned when a TOTP secret is issued.
type MFASetup struct {
	Secret          string `json:"secret"`           // Base32, for manual entry
	ProvisioningURI string `json:"provisioning_uri"` // otpauth://totp/...
	QRCodeDataURI   string `json:"qr_code"`          // data:image/png;base64,...
}
