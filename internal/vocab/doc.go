// Package vocab loads the vocabulary dataset a quiz session draws from.
//
// A dataset is a JSON array of records. Each record becomes an Entry whose ID
// is its position in the array. Records are checked against an embedded CUE
// schema before decoding so that a malformed file is rejected as a whole.
package vocab
