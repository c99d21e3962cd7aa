// Package publish uploads generated QR codes and tickets.
//
// S3 stores each asset under <folder>/<filename> in one bucket; Drive
// uploads into the folder whose id is given. Both return the remote id of
// the stored object.
package publish
