// Package textutil provides filename and token sanitization.
//
// SanitizeToken turns free-form identifiers such as a manifest projectId into
// lowercase filesystem tokens (used for scratch directory and lock names);
// diacritics are folded first via golang.org/x/text so accented titles keep
// their readable letters.
package textutil
