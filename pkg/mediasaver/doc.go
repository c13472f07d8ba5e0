// Package mediasaver receives a shared image reference, previews it, and saves
// a copy into a shared media index backed by pluggable blob storage.
//
// A Service holds one session: the current input reference (set by a share
// intent) and the current output entry (set by a successful save). How a save
// is persisted is decided once, when the Service is built, by selecting one of
// two strategies from the configured platform API level:
//
//   - modern (API level 29 and above): a pending MediaEntry is registered in
//     the index up front and its URI is used as the copy destination.
//   - legacy: the write-storage permission is required; the source is
//     downloaded, copied into the external pictures directory and only then
//     registered in the index.
//
// Repositories (memory, Postgres) and blob stores (memory, filesystem, S3) are
// provided under subpackages.
package mediasaver
