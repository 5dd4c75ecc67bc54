/*
 * Copyright © 2019 One Concern
 *
 */

package model

const (
	// CurrentToolVersion indicates the version of the persisted workspace model
	//
	// Note that version numbering is an integer, not a semver string.
	CurrentToolVersion uint64 = 1
)
