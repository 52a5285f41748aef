package domain

// Index field names shared across query generation, term extraction, and hit
// assembly. Generated query strings and the parser in domain/query must stay
// lexically compatible with these.
const (
	FieldPI                  = "PI"
	FieldPITopstruct         = "PI_TOPSTRUCT"
	FieldIDDoc               = "IDDOC"
	FieldIDDocOwner          = "IDDOC_OWNER"
	FieldDocType             = "DOCTYPE"
	FieldDocstruct           = "DOCSTRCT"
	FieldLabel               = "LABEL"
	FieldTitle               = "MD_TITLE"
	FieldDefault             = "DEFAULT"
	FieldSuperDefault        = "SUPERDEFAULT"
	FieldFulltext            = "FULLTEXT"
	FieldSuperFulltext       = "SUPERFULLTEXT"
	FieldUGCTerms            = "UGCTERMS"
	FieldSuperUGCTerms       = "SUPERUGCTERMS"
	FieldAccessCondition     = "ACCESSCONDITION"
	FieldCollection          = "DC"
	FieldThumbnail           = "THUMBNAIL"
	FieldMimeType            = "MIMETYPE"
	FieldOrder               = "ORDER"
	FieldOrderLabel          = "ORDERLABEL"
	FieldNumPages            = "NUMPAGES"
	FieldIsWork              = "ISWORK"
	FieldOverviewDescription = "OVERVIEWPAGE_DESCRIPTION"
	FieldOverviewPublication = "OVERVIEWPAGE_PUBLICATIONTEXT"
	FieldPersonTaxonomy      = "MD_PERSON"
	FieldPlaceTaxonomy       = "MD_LOCATION"

	// PrefixMetadata marks fields carrying descriptive metadata that the
	// found-metadata scan considers.
	PrefixMetadata = "MD_"
	// SuffixUntokenized marks the verbatim copy of a tokenized field; never
	// surfaced to users.
	SuffixUntokenized = "_UNTOKENIZED"
)

// OpenAccessCondition is the sentinel access condition that always allows.
const OpenAccessCondition = "OPENACCESS"

// ReversedValuePrefix marks facet values that encode a secondary sort key
// rather than a user-visible option.
const ReversedValuePrefix = '\u0001'

// Document types returned by the index.
const (
	DocTypeDocstruct = "DOCSTRCT"
	DocTypePage      = "PAGE"
	DocTypeMetadata  = "METADATA"
	DocTypeEvent     = "EVENT"
	DocTypeUGC       = "UGC"
	DocTypeGroup     = "GROUP"
)
