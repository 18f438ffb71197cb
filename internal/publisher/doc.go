// Package publisher uploads finished artifacts to the S3-compatible object
// store and resolves their public URLs.
//
// Objects are keyed jobs/<token>/<UTC timestamp>/<file>, so repeated runs for
// the same job never overwrite each other. Upload failures carry
// services.ErrUpload and are never retried here.
package publisher
