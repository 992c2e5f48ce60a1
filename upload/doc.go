// Package upload turns an artist's submission into stored objects and a
// catalogue record.
//
// A submission is fingerprinted exactly once before any transfer. Objects
// are stored below a prefix built from the sanitised contact details and the
// fingerprint:
//
//	Email_<email>_Name_<name>_TrackName_<track>_hash_<fingerprint>/
//	    master_<master file name>
//	    project/<folder>/<relative path>
package upload
