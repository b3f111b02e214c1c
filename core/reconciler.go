package core

// Reconcile decides how record relates to the stored snapshot. Only fields
// present in record are compared, so a partial payload never clears fields it
// did not carry. Changed fields follow schema declaration order.
func Reconcile(record CanonicalRecord, snapshot *Snapshot) Decision {
	if snapshot == nil {
		return Decision{Kind: DecisionCreate, ChangedFields: []string{}}
	}
	schema, _ := SchemaFor(record.EntityType)
	changed := make([]string, 0)
	for _, name := range OrderedFieldNames(record.EntityType, record.Fields) {
		incoming := record.Fields[name]
		stored, ok := snapshot.Fields[name]
		if !ok {
			stored = Null()
		}
		precision := schema.precision(name)
		if !incoming.Truncate(precision).Equal(stored.Truncate(precision)) {
			changed = append(changed, name)
		}
	}
	base := *snapshot
	if len(changed) == 0 {
		return Decision{Kind: DecisionNoOp, ChangedFields: []string{}, Base: &base}
	}
	return Decision{Kind: DecisionUpdate, ChangedFields: changed, Base: &base}
}
