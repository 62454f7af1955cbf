package petriflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/project-flogo/core/action"
	"github.com/project-flogo/core/app/resource"
	"github.com/project-flogo/core/data/metadata"
	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/support"
	"github.com/project-flogo/petriflow/support/event"
)

const ActionRef = "github.com/project-flogo/petriflow"

// reserved input holding the id of a case the action should wait for
// instead of launching a new one
const inputCaseID = "_caseId"

func init() {
	action.Register(&CaseAction{}, &ActionFactory{})
	resource.RegisterLoader(support.ResTypeNet, &support.NetLoader{})
}

// ActionSettings are the settings of a CaseAction
type ActionSettings struct {
	NetURI   string `md:"netURI,required"`
	ReturnID bool   `md:"returnId"`
}

var actionMd = action.ToMetadata(&ActionSettings{})

var (
	sharedMu     sync.Mutex
	sharedEngine *Engine
	netManager   *support.NetManager
)

// SetActionEngine sets the engine the actions launch their cases on, a
// worklist serving this engine can then complete their work items
func SetActionEngine(engine *Engine) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	sharedEngine = engine
}

func actionEngine() (*Engine, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedEngine == nil {
		settings, err := SettingsFromEnv()
		if err != nil {
			return nil, err
		}
		sharedEngine = New(WithSettings(settings))
	}
	return sharedEngine, nil
}

// ActionFactory creates the CaseActions of a flogo app
type ActionFactory struct {
	resManager *resource.Manager
	logger     log.Logger
}

func (f *ActionFactory) Initialize(ctx action.InitContext) error {
	f.resManager = ctx.ResourceManager()
	f.logger = log.ChildLogger(log.RootLogger(), "petriflow-action")
	return nil
}

func (f *ActionFactory) nets() *support.NetManager {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if netManager == nil {
		netManager = support.NewNetManager(support.NewRemoteNetProvider(f.log()))
	}
	return netManager
}

func (f *ActionFactory) log() log.Logger {
	if f.logger == nil {
		f.logger = log.ChildLogger(log.RootLogger(), "petriflow-action")
	}
	return f.logger
}

func (f *ActionFactory) New(config *action.Config) (action.Action, error) {

	settings := &ActionSettings{}
	if err := metadata.MapToStruct(config.Settings, settings, true); err != nil {
		return nil, err
	}

	def, _, err := support.GetDefinition(settings.NetURI, f.resManager, f.nets())
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errors.New("unable to resolve net: " + settings.NetURI)
	}

	engine, err := actionEngine()
	if err != nil {
		return nil, err
	}
	if _, err := engine.Specification(def.ID()); err != nil {
		if err := engine.AddSpecification(def); err != nil {
			// another action may have loaded the same net meanwhile
			if _, lookupErr := engine.Specification(def.ID()); lookupErr != nil {
				return nil, err
			}
		}
	}

	return &CaseAction{
		id:       config.Id,
		def:      def,
		returnID: settings.ReturnID,
		engine:   engine,
		logger:   f.log(),
	}, nil
}

// CaseAction runs a case of a net for every trigger event; the inputs are
// the case data and the results the data of the completed case
type CaseAction struct {
	id       string
	def      *definition.Definition
	returnID bool
	engine   *Engine
	logger   log.Logger
}

// Metadata get the Action's metadata
func (ca *CaseAction) Metadata() *action.Metadata {
	return actionMd
}

func (ca *CaseAction) IOMetadata() *metadata.IOMetadata {
	return nil
}

// Run implements action.AsyncAction.Run
func (ca *CaseAction) Run(ctx context.Context, inputs map[string]interface{}, handler action.ResultHandler) error {

	if caseID, ok := inputs[inputCaseID].(string); ok && caseID != "" {
		return ca.await(ctx, caseID, handler)
	}

	data := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		data[k] = v
	}

	c, err := ca.engine.CreateCase(ca.def.ID(), data)
	if err != nil {
		return err
	}

	if ca.logger.DebugEnabled() {
		ca.logger.Debugf("Running case '%s' of net '%s'", c.ID(), ca.def.ID())
	}

	if ca.returnID {
		handler.HandleResult(map[string]interface{}{"id": c.ID()}, nil)
	}

	if err := ca.await(ctx, c.ID(), handler); err != nil {
		return err
	}

	if err := c.Start(); err != nil {
		return fmt.Errorf("unable to start case '%s': %w", c.ID(), err)
	}
	return nil
}

// await reports the outcome of the case to the handler once it is final
func (ca *CaseAction) await(ctx context.Context, caseID string, handler action.ResultHandler) error {

	var once sync.Once
	finished := make(chan struct{})
	finish := func(results map[string]interface{}, err error) {
		once.Do(func() {
			handler.HandleResult(results, err)
			handler.Done()
			close(finished)
		})
	}

	err := ca.engine.OnCaseDone(caseID, func(evt *event.CaseEvent) {
		switch evt.Status {
		case event.COMPLETED:
			ca.logger.Infof("Case [%s] Done", caseID)
			finish(evt.Data, nil)
		default:
			ca.logger.Infof("Case [%s] %s", caseID, evt.Status)
			err := evt.Err
			if err == nil {
				err = fmt.Errorf("case '%s' %s", caseID, strings.ToLower(string(evt.Status)))
			}
			finish(nil, err)
		}
	})
	if err != nil {
		return err
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				finish(nil, ctx.Err())
			case <-finished:
			}
		}()
	}
	return nil
}
