package odoo

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SaleOrder is a sale.order record as returned by search_read. Odoo encodes
// null fields as the JSON literal false and many-to-one references as
// [id, display_name] pairs, so decoding is tolerant.
type SaleOrder struct {
	ID            int64
	Name          string
	State         string
	ApprovalState string
	AmountTotal   float64
	WriteDate     string
	Customer      string
}

// UnmarshalJSON decodes a search_read row.
func (o *SaleOrder) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            json.Number     `json:"id"`
		Name          json.RawMessage `json:"name"`
		State         json.RawMessage `json:"state"`
		ApprovalState json.RawMessage `json:"approval_state"`
		AmountTotal   json.RawMessage `json:"amount_total"`
		WriteDate     json.RawMessage `json:"write_date"`
		PartnerID     json.RawMessage `json:"partner_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.ID, _ = raw.ID.Int64()
	o.Name = asString(raw.Name)
	o.State = asString(raw.State)
	o.ApprovalState = asString(raw.ApprovalState)
	o.AmountTotal = asFloat(raw.AmountTotal)
	o.WriteDate = asString(raw.WriteDate)
	o.Customer = asRefName(raw.PartnerID)
	return nil
}

// DedupKey builds the composite key identifying this record's notified
// state: name, approval state, order state and amount. An unchanged key
// within the dedup window suppresses re-notification.
func (o *SaleOrder) DedupKey() string {
	return strings.Join([]string{
		o.Name,
		o.ApprovalState,
		o.State,
		strconv.FormatFloat(o.AmountTotal, 'f', -1, 64),
	}, "|")
}

// asString decodes a string field, treating false/null as empty.
func asString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// asFloat decodes a numeric field, treating false/null as zero.
func asFloat(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}

// asRefName extracts the display name from an [id, name] reference pair.
func asRefName(raw json.RawMessage) string {
	var ref []json.RawMessage
	if err := json.Unmarshal(raw, &ref); err != nil || len(ref) < 2 {
		return ""
	}
	return asString(ref[1])
}
