package support

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/project-flogo/core/support"
	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow/definition"
)

const (
	uriSchemeFile  = "file://"
	uriSchemeHttp  = "http://"
	uriSchemeHttps = "https://"

	// HeaderCompressed marks a base64 encoded, gzipped net served over http
	HeaderCompressed = "net-compressed"
)

// Provider fetches the representation of a net
type Provider interface {
	GetNet(uri string) (*definition.DefinitionRep, error)
}

// NetManager caches the nets built from a Provider by uri
type NetManager struct {
	mu          sync.Mutex
	nets        map[string]*definition.Definition
	netProvider Provider
}

func NewNetManager(netProvider Provider) *NetManager {
	manager := &NetManager{nets: make(map[string]*definition.Definition)}

	if netProvider != nil {
		manager.netProvider = netProvider
	} else {
		manager.netProvider = NewRemoteNetProvider(log.RootLogger())
	}

	return manager
}

// GetNet returns the net for the uri, fetching and building it on first use
func (nm *NetManager) GetNet(uri string) (*definition.Definition, error) {

	nm.mu.Lock()
	defer nm.mu.Unlock()

	def, exists := nm.nets[uri]
	if exists {
		return def, nil
	}

	rep, err := nm.netProvider.GetNet(uri)
	if err != nil {
		return nil, err
	}

	def, err = definition.NewDefinition(rep)
	if err != nil {
		return nil, fmt.Errorf("error building net with uri '%s': %w", uri, err)
	}

	nm.nets[uri] = def
	return def, nil
}

// IsURI reports whether the location is a uri a RemoteNetProvider can fetch
func IsURI(location string) bool {
	return strings.HasPrefix(location, uriSchemeFile) || strings.HasPrefix(location, uriSchemeHttp) ||
		strings.HasPrefix(location, uriSchemeHttps)
}

// RemoteNetProvider reads nets from file, http and https uris; the content
// may be gzipped
type RemoteNetProvider struct {
	logger log.Logger
	client *http.Client
}

func NewRemoteNetProvider(logger log.Logger) *RemoteNetProvider {
	return &RemoteNetProvider{logger: logger, client: &http.Client{}}
}

func (p *RemoteNetProvider) GetNet(uri string) (*definition.DefinitionRep, error) {

	var content []byte
	var err error

	switch {
	case strings.HasPrefix(uri, uriSchemeFile):
		content, err = p.readFile(uri)
	case strings.HasPrefix(uri, uriSchemeHttp), strings.HasPrefix(uri, uriSchemeHttps):
		content, err = p.fetch(uri)
	default:
		err = fmt.Errorf("unsupported uri '%s'", uri)
	}
	if err != nil {
		return nil, err
	}

	rep := &definition.DefinitionRep{}
	if err := json.Unmarshal(content, rep); err != nil {
		p.logger.Errorf("Unable to parse net '%s': %v", uri, err)
		return nil, fmt.Errorf("error unmarshalling net with uri '%s': %w", uri, err)
	}

	return rep, nil
}

func (p *RemoteNetProvider) readFile(uri string) ([]byte, error) {
	p.logger.Infof("Loading local net: %s", uri)

	path, ok := support.URLStringToFilePath(uri)
	if !ok {
		return nil, fmt.Errorf("invalid file uri '%s'", uri)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading net with uri '%s': %w", uri, err)
	}

	if isGzip(content) {
		content, err = unzip(content)
		if err != nil {
			return nil, fmt.Errorf("error uncompressing net with uri '%s': %w", uri, err)
		}
	}
	return content, nil
}

func (p *RemoteNetProvider) fetch(uri string) ([]byte, error) {
	p.logger.Infof("Fetching net: %s", uri)

	resp, err := p.client.Get(uri)
	if err != nil {
		return nil, fmt.Errorf("error getting net with uri '%s': %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("error getting net with uri '%s', status code %d", uri, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading net response body with uri '%s': %w", uri, err)
	}

	if strings.EqualFold(resp.Header.Get(HeaderCompressed), "true") {
		body, err = decodeAndUnzip(string(body))
		if err != nil {
			return nil, fmt.Errorf("error decoding compressed net with uri '%s': %w", uri, err)
		}
	}
	return body, nil
}

func isGzip(content []byte) bool {
	return len(content) > 2 && content[0] == 0x1f && content[1] == 0x8b
}

func decodeAndUnzip(encoded string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return unzip(decoded)
}

func unzip(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
