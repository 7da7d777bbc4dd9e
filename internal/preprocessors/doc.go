// Package preprocessors provides implementations of the Preprocessor
// interface for each analysis content type. A preprocessor parses raw
// document text into an ordered section hierarchy with fenced code
// blocks lifted out verbatim.
//
// Preprocessing never rejects a document: input with no recognisable
// structure degrades to a single section holding the whole text.
package preprocessors
