package service

// Status is the verification status stored with a reading
type Status string

const (
	StatusVerified      Status = "VERIFIED"
	StatusWarning       Status = "WARNING"
	StatusFraudDetected Status = "FRAUD_DETECTED"
)

const (
	fraudDetectedThreshold = 0.70
	warningThreshold       = 0.40
	minTrustedConfidence   = 0.85
)

// ClassifyStatus maps a fraud score and OCR confidence to a verification status.
// This is the canonical classifier; fraud.Recommend only advises.
func ClassifyStatus(fraudScore, confidence float64) Status {
	switch {
	case fraudScore >= fraudDetectedThreshold:
		return StatusFraudDetected
	case fraudScore >= warningThreshold:
		return StatusWarning
	case confidence < minTrustedConfidence:
		return StatusWarning
	default:
		return StatusVerified
	}
}
