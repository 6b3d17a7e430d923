package lock

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/lockmgr"
	"github.com/roberthgnz/lsdb/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcLockMgr   lockmgr.ILockManager
	waitSeconds  uint64
	leaseSeconds uint64

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations on a lockmgr shard",
		PersistentPreRunE: setupLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Long:  "Acquire a lock. With --wait the command retries until the lock is free or the wait time is over.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and owner ID. The owner ID is the hex string returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Set default shard ID for lock operations (different from KV default)
	LockCommands.PersistentFlags().Int("shard", 200, util.WrapString("ID of the shard to connect to"))

	// Add flags specific to acquire
	acquireCmd.Flags().Uint64Var(&waitSeconds, "wait", 0, "Seconds to wait for a held lock (0 tries once)")
	acquireCmd.Flags().Uint64Var(&leaseSeconds, "lease", 0, "Seconds after which an unreleased lock is free again (0 holds it until released)")
}

// setupLockClient initializes the lock manager client
func setupLockClient(cmd *cobra.Command, _ []string) error {
	conn, err := util.Connect(cmd)
	if err != nil {
		return err
	}
	rpcLockMgr, err = client.NewRPCLockMgr(conn.ShardId, conn.Config, conn.Transport, conn.Serializer)
	return err
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	key := args[0]
	lease := time.Duration(leaseSeconds) * time.Second

	var ownerID []byte
	var err error
	acquired := false
	if waitSeconds == 0 {
		acquired, ownerID, err = rpcLockMgr.AcquireLock(key, lease)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(waitSeconds)*time.Second)
		defer cancel()
		ownerID, err = lockmgr.Acquire(ctx, rpcLockMgr, key, lease, 100*time.Millisecond)
		if err == context.DeadlineExceeded {
			err = nil
		} else {
			acquired = err == nil
		}
	}

	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}

	// Convert owner ID to hex string for display
	fmt.Printf("acquired=true, ownerId=%s\n", hex.EncodeToString(ownerID))
	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	key := args[0]
	lease := time.Duration(leaseSeconds) * time.Second

	// Convert hex string owner ID back to bytes
	ownerID, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid owner ID format: %v", err)
	}

	released, err := rpcLockMgr.ReleaseLock(key, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}
