package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loykin/unicornguard"
	"github.com/loykin/unicornguard/pkg/client"
)

func fromLocal(st unicornguard.Status) client.Status {
	return client.Status{
		PID:           st.PID,
		Alive:         st.Alive,
		PIDFile:       st.PIDFile,
		PIDFileExists: st.PIDFileExists,
		Command:       st.Command,
	}
}

type statusView struct {
	client.Status
	Process *client.ProcessInfo `json:"process,omitempty"`
}

func (c *command) printStatus(st client.Status, proc *client.ProcessInfo, asJSON bool) error {
	if asJSON {
		return printJSON(c, statusView{Status: st, Process: proc})
	}
	state := "stopped"
	if st.Alive {
		state = "running"
	}
	_, _ = fmt.Fprintf(c.out, "state:   %s\n", state)
	if st.PID > 0 {
		_, _ = fmt.Fprintf(c.out, "pid:     %d\n", st.PID)
	}
	_, _ = fmt.Fprintf(c.out, "pidfile: %s (exists=%t)\n", st.PIDFile, st.PIDFileExists)
	if len(st.Command) > 0 {
		_, _ = fmt.Fprintf(c.out, "command: %s\n", strings.Join(st.Command, " "))
	}
	if u := st.Usage; u != nil {
		_, _ = fmt.Fprintf(c.out, "cpu:     %.1f%%\nmemory:  %.1f MB\nthreads: %d\n", u.CPUPercent, u.MemoryMB, u.NumThreads)
	}
	if proc != nil {
		_, _ = fmt.Fprintf(c.out, "process: %s (pgid %d, started %s)\n", proc.Name, proc.PGID, proc.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printJSON(c *command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(b))
	return err
}
