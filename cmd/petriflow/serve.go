package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/project-flogo/core/support/log"
	"github.com/spf13/cobra"

	"github.com/project-flogo/petriflow"
	"github.com/project-flogo/petriflow/state"
	"github.com/project-flogo/petriflow/state/couch"
	"github.com/project-flogo/petriflow/support/event/amqp"
	"github.com/project-flogo/petriflow/worklist"
)

var (
	servePort     int
	serveCouch    bool
	serveAMQP     string
	serveExchange string
	serveRestore  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve [net.json...]",
	Short: "Load nets and serve the worklist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "worklist port, PETRIFLOW_WORKLIST_PORT when not set")
	serveCmd.Flags().BoolVar(&serveCouch, "couchdb", false, "record cases in the CouchDB named by PETRIFLOW_COUCHDB_URL")
	serveCmd.Flags().StringVar(&serveAMQP, "amqp", "", "AMQP url events are published to")
	serveCmd.Flags().StringVar(&serveExchange, "exchange", "petriflow", "AMQP topic exchange")
	serveCmd.Flags().StringSliceVar(&serveRestore, "restore", nil, "ids of cases to restore from CouchDB")
}

func serve(paths []string) error {
	logger := log.ChildLogger(log.RootLogger(), "petriflow")

	settings, err := petriflow.SettingsFromEnv()
	if err != nil {
		return err
	}

	opts := []petriflow.Option{petriflow.WithSettings(settings)}
	if serveCouch {
		cfg, err := couch.ConfigFromEnv()
		if err != nil {
			return err
		}
		repo, err := couch.Open(cfg)
		if err != nil {
			return fmt.Errorf("unable to open CouchDB: %w", err)
		}
		if settings.StateRecording == state.RecordingModeOff {
			settings.StateRecording = state.RecordingModeFull
		}
		opts = append(opts, petriflow.WithRepository(repo))
	}

	engine := petriflow.New(opts...)

	if serveAMQP != "" {
		sink, conn, err := amqp.Dial(serveAMQP, serveExchange)
		if err != nil {
			return fmt.Errorf("unable to connect to AMQP broker: %w", err)
		}
		defer conn.Close()
		engine.AddListener(sink.Listener())
	}

	for _, path := range paths {
		rep, err := readDefinitionRep(path)
		if err != nil {
			return err
		}
		if _, err := engine.LoadSpecification(rep); err != nil {
			return err
		}
	}

	for _, caseID := range serveRestore {
		if _, err := engine.RestoreCase(caseID); err != nil {
			return fmt.Errorf("unable to restore case '%s': %w", caseID, err)
		}
	}

	settingsMap := map[string]interface{}{}
	if servePort > 0 {
		settingsMap["port"] = servePort
	}
	ws, err := worklist.NewService(engine, settingsMap)
	if err != nil {
		return err
	}
	if err := ws.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Stopping worklist")
	if err := ws.Stop(); err != nil {
		return err
	}
	return ws.WaitStop(10 * time.Second)
}
