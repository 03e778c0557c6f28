package model

// DecodeError records a call whose selector matched an operation of interest
// but whose arguments could not be decoded.
type DecodeError struct {
	TxHash        string `json:"tx_hash"`
	RouterName    string `json:"router_name"`
	RouterAddress string `json:"router_address"`
	Operation     string `json:"operation"`
	Selector      string `json:"selector"`
	Input         string `json:"input"`
	Error         string `json:"error"`
	DetectedAt    string `json:"detected_at"`
}
