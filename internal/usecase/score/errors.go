package score

import "errors"

// ErrSchemaParse indicates an LLM scorer response could not be parsed even
// after jsonextract's recovery rules, per the error handling design's kind
// 3 ("schema/parse error"). Adapters wrap this so Service's logs
// distinguish a parse failure from a network/5xx failure.
var ErrSchemaParse = errors.New("score: LLM response failed schema recovery")
