// Package enrich turns queued work items into full catalog records. Three
// passes share one merge engine: the content pass fetches source detail
// bundles and writes title records, the people pass fills person records
// and filmographies, and the wiki pass layers encyclopedia text and
// structured facts onto titles the content pass already wrote. Field
// conflicts resolve the same way everywhere: fill blanks, union lists,
// and overwrite prose only when the challenger is substantially richer.
package enrich
