package support

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/project-flogo/core/app/resource"

	"github.com/project-flogo/petriflow/definition"
)

const (
	ResTypeNet = "petrinet"
)

// NetLoader builds the nets embedded as resources of a flogo app
type NetLoader struct {
}

func (*NetLoader) LoadResource(config *resource.Config) (*resource.Resource, error) {

	rep := &definition.DefinitionRep{}
	if err := json.Unmarshal(config.Data, rep); err != nil {
		return nil, fmt.Errorf("error unmarshalling net resource with id '%s': %w", config.ID, err)
	}

	def, err := definition.NewDefinition(rep)
	if err != nil {
		return nil, fmt.Errorf("error building net resource with id '%s': %w", config.ID, err)
	}

	return resource.New(ResTypeNet, def), nil
}

// GetDefinition resolves a net by uri: 'res://' uris are looked up in the
// resource manager, any other uri goes through the net manager.  The flag
// reports whether the net came from a resource.
func GetDefinition(uri string, resManager *resource.Manager, netManager *NetManager) (*definition.Definition, bool, error) {

	if strings.HasPrefix(uri, resource.UriScheme) {
		if resManager == nil {
			return nil, false, fmt.Errorf("no resources to resolve '%s'", uri)
		}
		res := resManager.GetResource(uri)
		if res == nil {
			return nil, false, nil
		}
		def, ok := res.Object().(*definition.Definition)
		if !ok {
			return nil, false, fmt.Errorf("resource '%s' is not a net", uri)
		}
		return def, true, nil
	}

	def, err := netManager.GetNet(uri)
	if err != nil {
		return nil, false, err
	}
	return def, false, nil
}
