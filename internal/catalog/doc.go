// Package catalog persists the metadata corpus and the durable work queue in
// SQLite.
//
// The Store manages database connections, schema initialization, content and
// people records with their credit links, the priority-ordered work queue,
// and the round-robin cycle cursors that keep enrichment coverage fair. Queue
// rows are retained after processing so completed and failed work stays
// visible for diagnostics.
//
// Treat this package as the single source of truth for catalog semantics;
// when you add new tables or columns, update schema.sql and bump
// schemaVersion.
package catalog
