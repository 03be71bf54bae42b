// Package validation provides centralized input validation logic.
// This includes file and table id checks, tag and file name checks, and
// struct validation of option configs.
//
// File names received from the platform are validated before they become
// local paths so a hostile name cannot escape the target directory.
package validation
