// Package catalogue records certified tracks and artist accounts in SQLite
// and answers the search and dashboard queries.
package catalogue
