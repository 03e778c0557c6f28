package model

// Observation is a detected call to an operation of interest on a known router.
type Observation struct {
	RouterName    string       `json:"router_name"`
	RouterAddress string       `json:"router_address"`
	RouterVersion uint8        `json:"router_version"`
	Operation     string       `json:"operation"`
	Selector      string       `json:"selector"`
	Direction     string       `json:"direction"`
	Parameters    []Param      `json:"parameters"`
	Swap          SwapCallData `json:"swap"`
	TxHash        string       `json:"tx_hash"`
	From          string       `json:"from,omitempty"`
	Value         string       `json:"value"`
	DetectedAt    string       `json:"detected_at"`
}

// Param is one decoded call argument, in declaration order.
type Param struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SwapCallData is the router-agnostic view of a swap call. Amounts are decimal strings;
// only the fields the operation declares are set.
type SwapCallData struct {
	AmountIn     string   `json:"amount_in,omitempty"`
	AmountInMax  string   `json:"amount_in_max,omitempty"`
	AmountOut    string   `json:"amount_out,omitempty"`
	AmountOutMin string   `json:"amount_out_min,omitempty"`
	Path         []string `json:"path"`
	To           string   `json:"to"`
	Deadline     string   `json:"deadline"`
}
