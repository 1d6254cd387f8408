// Package dna generates unique trait combinations ("DNA") from weighted
// layers.
//
// A generation run samples one option per layer, joins the values with a
// delimiter, filters out rendering-only segments (those carrying a truthy
// ?bypassDNA annotation), and accepts the result only if the filtered value
// has not been seen before. The run ends when the target edition count is
// reached or when the number of rejected duplicates reaches the failure
// tolerance.
//
// Randomness is always injected through RandomSource; nothing in this
// package reads an ambient global generator.
package dna
