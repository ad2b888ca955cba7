package deriv

// Wire types for the Deriv websocket API. Every request carries a synthetic
// req_id used to correlate the response; streaming messages additionally
// carry a server-assigned subscription id.

type errorField struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type subscriptionField struct {
	ID string `json:"id"`
}

// envelope is the outer shape of every inbound message, used for routing.
type envelope struct {
	MsgType      string             `json:"msg_type"`
	ReqID        int64              `json:"req_id"`
	Error        *errorField        `json:"error"`
	Subscription *subscriptionField `json:"subscription"`
}

type authorizeRequest struct {
	Authorize string `json:"authorize"`
	ReqID     int64  `json:"req_id"`
}

type authorizeResponse struct {
	Authorize struct {
		LoginID  string  `json:"loginid"`
		Balance  float64 `json:"balance"`
		Currency string  `json:"currency"`
	} `json:"authorize"`
}

type ticksRequest struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
	ReqID     int64  `json:"req_id"`
}

type tickData struct {
	Symbol string  `json:"symbol"`
	Quote  float64 `json:"quote"`
	Epoch  int64   `json:"epoch"`
	ID     string  `json:"id"`
}

type tickMessage struct {
	Tick tickData `json:"tick"`
}

type forgetRequest struct {
	Forget string `json:"forget"`
	ReqID  int64  `json:"req_id"`
}

type historyRequest struct {
	TicksHistory string `json:"ticks_history"`
	Count        int    `json:"count"`
	End          string `json:"end"`
	Style        string `json:"style"`
	ReqID        int64  `json:"req_id"`
}

type historyResponse struct {
	History struct {
		Prices []float64 `json:"prices"`
		Times  []int64   `json:"times"`
	} `json:"history"`
}

type proposalRequest struct {
	Proposal     int     `json:"proposal"`
	Amount       float64 `json:"amount"`
	Basis        string  `json:"basis"`
	ContractType string  `json:"contract_type"`
	Currency     string  `json:"currency"`
	Duration     int     `json:"duration"`
	DurationUnit string  `json:"duration_unit"`
	Symbol       string  `json:"symbol"`
	Barrier      string  `json:"barrier,omitempty"`
	ReqID        int64   `json:"req_id"`
}

type proposalResponse struct {
	Proposal struct {
		ID       string  `json:"id"`
		AskPrice float64 `json:"ask_price"`
		Payout   float64 `json:"payout"`
		Spot     float64 `json:"spot"`
		SpotTime int64   `json:"spot_time"`
	} `json:"proposal"`
}

type buyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
	ReqID int64   `json:"req_id"`
}

type buyResponse struct {
	Buy struct {
		ContractID int64   `json:"contract_id"`
		BuyPrice   float64 `json:"buy_price"`
	} `json:"buy"`
}

type openContractRequest struct {
	ProposalOpenContract int   `json:"proposal_open_contract"`
	ContractID           int64 `json:"contract_id"`
	Subscribe            int   `json:"subscribe"`
	ReqID                int64 `json:"req_id"`
}

type openContractMessage struct {
	ProposalOpenContract struct {
		ContractID int64   `json:"contract_id"`
		IsSold     int     `json:"is_sold"`
		Profit     float64 `json:"profit"`
		Payout     float64 `json:"payout"`
		BuyPrice   float64 `json:"buy_price"`
	} `json:"proposal_open_contract"`
}

// ContractUpdate is one settlement-tracking update for an open contract.
type ContractUpdate struct {
	ContractID int64
	IsSold     bool
	Profit     float64
	Payout     float64
	BuyPrice   float64
}
