package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hr-ingest/core"
)

var (
	_ gocmd.Querier[GetRecordMessage, core.StoredRecord]  = (*GetRecordQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, []core.Delivery] = (*ListDeliveriesQuery)(nil)
	_ RecordReader                                          = (*core.Service)(nil)
	_ DeliveryReader                                        = (*core.Service)(nil)
)
