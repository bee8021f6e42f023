package analysis

import (
	"fmt"
	"sync"

	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// TokenizerName is the registry name of the pipeline-backed bleve
// tokenizer.
const TokenizerName = "chatvault_mixed"

var (
	registerOnce sync.Once

	pipelineMu    sync.RWMutex
	blevePipeline *Pipeline
)

// RegisterBleve exposes the pipeline to bleve's tokenizer registry under
// TokenizerName. Must be called before an index using the tokenizer is
// opened; later calls swap the pipeline (for matcher reloads the swap is
// not needed, the pipeline reads the matcher live).
func RegisterBleve(p *Pipeline) {
	pipelineMu.Lock()
	blevePipeline = p
	pipelineMu.Unlock()

	registerOnce.Do(func() {
		registry.RegisterTokenizer(TokenizerName,
			func(_ map[string]interface{}, _ *registry.Cache) (bleveanalysis.Tokenizer, error) {
				pipelineMu.RLock()
				defer pipelineMu.RUnlock()
				if blevePipeline == nil {
					return nil, fmt.Errorf("analysis: pipeline not registered")
				}
				return &bleveTokenizer{p: blevePipeline}, nil
			})
	})
}

// bleveTokenizer adapts the pipeline to bleve's analysis interface.
type bleveTokenizer struct {
	p *Pipeline
}

func (t *bleveTokenizer) Tokenize(input []byte) bleveanalysis.TokenStream {
	tokens := t.p.Analyze(string(input))
	stream := make(bleveanalysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		typ := bleveanalysis.AlphaNumeric
		if tok.Kind == KindCJK {
			typ = bleveanalysis.Ideographic
		}
		stream = append(stream, &bleveanalysis.Token{
			Term:     []byte(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Position: i + 1,
			Type:     typ,
		})
	}
	return stream
}
