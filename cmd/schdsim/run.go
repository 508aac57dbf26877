package main

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/schd/model"
	"github.com/sarchlab/schd/simulation"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <model>",
		Short: "Run a model and print the summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0])
			if err != nil {
				return err
			}

			applyOverrides(v, m)

			b := simulation.MakeBuilder().WithModel(m)
			if v.GetBool("log-events") {
				b = b.WithEventLogger(log.New(cmd.ErrOrStderr(), "", 0))
			}

			s, err := b.Build()
			if err != nil {
				return err
			}

			atexit.Register(func() { _ = s.Terminate() })

			runErr := s.Run()
			termErr := s.Terminate()

			s.Summary().Print(cmd.OutOrStdout())

			return errors.Join(runErr, termErr)
		},
	}

	flags := runCmd.Flags()
	flags.String("log-level", "", "Log level: debug, info, warn or error.")
	flags.String("log-file", "", "File that receives a copy of the log.")
	flags.String("trace-db", "", "Record signals and jobs into this database.")
	flags.String("dump", "", "Dump the messages into this file.")
	flags.String("dump-mask", "", "Only dump the endpoints this pattern matches.")
	flags.Bool("monitor", false, "Serve the monitor while the simulation runs.")
	flags.Int("port", 0, "Port of the monitor. 0 picks a random one.")
	flags.Bool("open-browser", false, "Open the monitor in a browser.")
	flags.Bool("log-events", false, "Print every event that the engine handles.")

	return runCmd
}

// applyOverrides replaces the model settings with the flags and environment
// variables that are set.
func applyOverrides(v *viper.Viper, m *model.Model) {
	if v.IsSet("log-level") {
		m.Report.Level = v.GetString("log-level")
	}

	if v.IsSet("log-file") {
		m.Report.LogFile = v.GetString("log-file")
	}

	if v.IsSet("trace-db") {
		m.Trace.DB = v.GetString("trace-db")
	}

	if v.IsSet("dump") {
		m.Dump.File = v.GetString("dump")
	}

	if v.IsSet("dump-mask") {
		m.Dump.Mask = v.GetString("dump-mask")
	}

	if v.IsSet("monitor") {
		m.Monitor.Enable = v.GetBool("monitor")
	}

	if v.IsSet("port") {
		m.Monitor.Enable = true
		m.Monitor.Port = v.GetInt("port")
	}

	if v.IsSet("open-browser") {
		m.Monitor.OpenBrowser = v.GetBool("open-browser")
	}
}
