// Package core moves tabular data between ClickHouse and flat files.
//
// It holds the domain logic and none of the I/O: the database and the file
// store are reached through the [Warehouse] and [FileStore] ports, which
// internal/clickhouse and internal/flatfile implement. The web layer and
// tests drive it through [Service].
//
// # Requests
//
// Every operation takes a strict request variant produced by the
// [RawRequest] conversion methods. Conversion validates identifiers, ports,
// delimiters and the table topology before anything touches a connection
// or the storage root:
//
//	req, err := raw.IngestRequest(svc.Defaults())
//	if err != nil {
//	    // KindInvalidInput, KindUnsupportedTopology or KindNoColumnsSelected
//	}
//	res, err := svc.Ingest(ctx, req)
//
// # Transfers
//
// [Service.Ingest] runs one transfer through the states Validating,
// ResolvingSchema, Transferring and then Completed or Failed, logging each
// transition. File to database transfers insert in batches of
// [Options.BatchSize] rows; a failure after the first commit is reported as
// a [PartialTransferError] carrying the committed count.
//
// # Errors
//
// Failures are classified with [Kind]. [KindOf] recovers the kind from any
// wrapped error and [MapError] turns it into a coded [UserMessage].
package core
