package model

import (
	"errors"
	"sync"
)

var (
	modelsMu     sync.RWMutex
	models       = make(map[string]*NetModel)
	defaultModel *NetModel
)

// Register registers the specified net model
func Register(netModel *NetModel) {
	modelsMu.Lock()
	defer modelsMu.Unlock()

	if netModel == nil {
		panic("model.Register: model cannot be nil")
	}

	id := netModel.Name()

	if _, dup := models[id]; dup {
		panic("model.Register: model " + id + " already registered")
	}

	models[id] = netModel
}

// Registered gets all the registered net models
func Registered() []*NetModel {

	modelsMu.RLock()
	defer modelsMu.RUnlock()

	list := make([]*NetModel, 0, len(models))

	for _, value := range models {
		list = append(list, value)
	}

	return list
}

// Get gets specified NetModel
func Get(id string) (*NetModel, error) {
	modelsMu.RLock()
	defer modelsMu.RUnlock()

	if _, ok := models[id]; !ok {
		return nil, errors.New("model not found")
	}
	return models[id], nil
}

// RegisterDefault registers the specified net model as the default model
func RegisterDefault(netModel *NetModel) {
	modelsMu.Lock()
	defer modelsMu.Unlock()

	if netModel == nil {
		panic("model.RegisterDefault: model cannot be nil")
	}

	id := netModel.Name()

	if _, dup := models[id]; !dup {
		models[id] = netModel
	}

	defaultModel = netModel
}

func Default() *NetModel {
	modelsMu.RLock()
	defer modelsMu.RUnlock()

	return defaultModel
}
