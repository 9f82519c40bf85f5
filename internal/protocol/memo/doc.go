// Package memo encodes the symptom payload carried inside a report.
//
// A version 1 memo is a fixed 20-byte layout:
//
//	version(1) | report time, unix seconds(8) | earliest symptom time(8, 0 = unset)
//	| fever(1) | cough(1) | flags(1)
//
// Integers are big-endian. Flag bits, lowest first: breathlessness, muscle
// aches, loss of smell or taste, diarrhea, runny nose, other, no symptoms.
package memo
