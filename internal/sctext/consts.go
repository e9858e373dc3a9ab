package sctext

const (
	// ============================================================================
	// Section Headers
	// ============================================================================

	// SuperClusterPrefix starts every supercluster block, followed by the uid
	SuperClusterPrefix = "SUPERCLUSTER Uid: "

	// SliceListsHeader opens the slice list section
	SliceListsHeader = "slice lists:"

	// RotationalHeader opens the rotational cluster section
	RotationalHeader = "rotational clusters:"

	// ============================================================================
	// Indentation
	// ============================================================================

	// SectionIndent precedes section headers
	SectionIndent = "    "

	// EntryIndent precedes the first line of every entry
	EntryIndent = "        "

	// ContinuationIndent precedes the following lines of a slice list
	ContinuationIndent = "          "

	// ============================================================================
	// Slice List Delimiters
	// ============================================================================

	// ListOpen starts a slice list
	ListOpen = "[ "

	// ListClose ends a slice list
	ListClose = " ]"

	// EmptyList is printed when a supercluster has no slice lists
	EmptyList = "[ ]"

	// ============================================================================
	// Rotational Cluster Delimiters
	// ============================================================================

	// GroupOpen starts a rotational cluster or one of its aligned clusters
	GroupOpen = "["

	// GroupClose ends a rotational cluster or one of its aligned clusters
	GroupClose = "]"

	// GroupSeparator separates aligned clusters inside a rotational cluster
	GroupSeparator = "], ["

	// SliceSeparator separates slices inside an aligned cluster
	SliceSeparator = ", "

	// ============================================================================
	// Field Slice Tokens
	// ============================================================================

	// SizeOpen and SizeClose wrap the field width after the name
	SizeOpen  = "<"
	SizeClose = ">"

	// AttrPrefix marks the alignment and valid range attributes
	AttrPrefix = "^"

	// ValidRangePrefix introduces the valid container range, ^bit[lo..hi]
	ValidRangePrefix = "^bit["

	// ValidRangeSeparator separates the bounds of the valid range
	ValidRangeSeparator = ".."

	// EgressPrefix marks fields of the egress thread
	EgressPrefix = "egress::"

	// ============================================================================
	// Line Endings
	// ============================================================================

	// CR is trimmed from input lines
	CR = "\r"

	// LF ends every emitted line
	LF = "\n"
)
