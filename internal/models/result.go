package models

// ExtractionResult holds the fields recovered from a statement.
// A nil field was not extracted by the service.
type ExtractionResult struct {
	Issuer          *string `json:"issuer,omitempty" msgpack:"issuer,omitempty"`
	CardNumber      *string `json:"card_number,omitempty" msgpack:"card_number,omitempty"`
	DueDate         *string `json:"due_date,omitempty" msgpack:"due_date,omitempty"`
	TotalDue        *string `json:"total_due,omitempty" msgpack:"total_due,omitempty"`
	StatementPeriod *string `json:"statement_period,omitempty" msgpack:"statement_period,omitempty"`
}

// ResultField is one labelled row of the rendered result.
type ResultField struct {
	Key       string `json:"key" msgpack:"key"`
	Label     string `json:"label" msgpack:"label"`
	Value     string `json:"value,omitempty" msgpack:"value,omitempty"`
	Extracted bool   `json:"extracted" msgpack:"extracted"`
}

// Field keys as they appear on the wire.
const (
	FieldIssuer          = "issuer"
	FieldCardNumber      = "card_number"
	FieldDueDate         = "due_date"
	FieldTotalDue        = "total_due"
	FieldStatementPeriod = "statement_period"
)

// Fields returns the result in display order with its labels.
func (r *ExtractionResult) Fields() []ResultField {
	if r == nil {
		return nil
	}
	rows := []struct {
		key, label string
		value      *string
	}{
		{FieldIssuer, "Issuer", r.Issuer},
		{FieldCardNumber, "Card (Last Digits)", r.CardNumber},
		{FieldDueDate, "Payment Due Date", r.DueDate},
		{FieldTotalDue, "Total Amount Due", r.TotalDue},
		{FieldStatementPeriod, "Statement Period", r.StatementPeriod},
	}

	fields := make([]ResultField, 0, len(rows))
	for _, row := range rows {
		f := ResultField{Key: row.key, Label: row.label}
		if row.value != nil {
			f.Value = *row.value
			f.Extracted = true
		}
		fields = append(fields, f)
	}
	return fields
}

// Clone returns a deep copy so snapshots never alias controller state.
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	return &ExtractionResult{
		Issuer:          cloneString(r.Issuer),
		CardNumber:      cloneString(r.CardNumber),
		DueDate:         cloneString(r.DueDate),
		TotalDue:        cloneString(r.TotalDue),
		StatementPeriod: cloneString(r.StatementPeriod),
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
