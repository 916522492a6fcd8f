package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentic-research/pagefly/internal/nfsmount"
	"github.com/spf13/cobra"
)

var (
	mountAddr    string
	mountNoMount bool
)

func init() {
	mountCmd.Flags().StringVar(&mountAddr, "addr", "127.0.0.1:0", "NFS listen address")
	mountCmd.Flags().BoolVar(&mountNoMount, "serve-only", false, "Serve NFS without calling the system mount")
	rootCmd.AddCommand(mountCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Mount the composed page tree read-only over NFS",
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !mountNoMount && len(args) == 0 {
			return fmt.Errorf("mountpoint is required unless --serve-only is set")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		pfs := nfsmount.NewPageFS(ctx, s, newEngine(s))
		srv, err := nfsmount.NewServer(pfs, mountAddr)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		logger.Info("NFS server listening", "port", srv.Port())

		if !mountNoMount {
			mountPoint := args[0]
			if err := nfsmount.Mount(srv.Port(), mountPoint); err != nil {
				return err
			}
			logger.Info("mounted page tree", "mountpoint", mountPoint)
			defer func() {
				if err := nfsmount.Unmount(mountPoint); err != nil {
					logger.Error("unmount failed", "mountpoint", mountPoint, "error", err)
				}
			}()
		}

		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	},
}
