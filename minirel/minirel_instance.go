package minirel

import (
	"path/filepath"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/minirel/minirel_util"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/access"
	"github.com/minirel/MinirelDB/storage/disk"
)

// MinirelInstance wires the file system, the log manager and the
// transaction manager of one data directory
type MinirelInstance struct {
	fs                  disk.FileSystem
	dir                 string
	log_manager         *recovery.LogManager
	transaction_manager *access.TransactionManager
	recovery_report     *recovery.RecoveryReport
}

func NewMinirelInstanceForTesting() (*MinirelInstance, error) {
	return NewMinirelInstanceOnFileSystem(disk.NewVirtualFileSystem(), "/test", common.LogFileName)
}

// NewMinirelInstance opens the data directory described by cfg
func NewMinirelInstance(cfg *common.Config) (*MinirelInstance, error) {
	common.ActiveLogKindSetting = cfg.LogKinds
	if cfg.UseVirtualStorage {
		return NewMinirelInstanceOnFileSystem(disk.NewVirtualFileSystem(), cfg.DataDir, cfg.LogFileName)
	}
	fs := disk.NewOSFileSystem()
	if !minirel_util.FileExists(cfg.DataDir) {
		if err := fs.MkdirAll(cfg.DataDir); err != nil {
			return nil, err
		}
		common.ShPrintf(common.INFO, "created data directory %s\n", cfg.DataDir)
	}
	return NewMinirelInstanceOnFileSystem(fs, cfg.DataDir, cfg.LogFileName)
}

/*
 * NewMinirelInstanceOnFileSystem opens the log in dir and runs crash
 * recovery over it before the transaction manager exists, so no new
 * transaction can interleave with recovery. the transaction id counter
 * starts above every id recovery has seen.
 */
func NewMinirelInstanceOnFileSystem(fs disk.FileSystem, dir string, log_file_name string) (*MinirelInstance, error) {
	log_manager, err := recovery.NewLogManager(fs, filepath.Join(dir, log_file_name))
	if err != nil {
		return nil, err
	}

	report, err := log_manager.Recover(access.NewRecoveryOpener(fs, dir))
	if err != nil {
		log_manager.Close()
		return nil, errors.Wrap(err, "recovery failed")
	}
	for _, rerr := range report.Errors {
		common.ShPrintf(common.WARN, "recovery: %v\n", rerr)
	}

	transaction_manager := access.NewTransactionManagerWithSeed(log_manager, report.GreatestTxnID)
	return &MinirelInstance{fs, dir, log_manager, transaction_manager, report}, nil
}

func (mi *MinirelInstance) GetFileSystem() disk.FileSystem {
	return mi.fs
}

func (mi *MinirelInstance) GetDataDir() string {
	return mi.dir
}

func (mi *MinirelInstance) GetLogManager() *recovery.LogManager {
	return mi.log_manager
}

func (mi *MinirelInstance) GetTransactionManager() *access.TransactionManager {
	return mi.transaction_manager
}

// GetRecoveryReport describes the recovery run at startup
func (mi *MinirelInstance) GetRecoveryReport() *recovery.RecoveryReport {
	return mi.recovery_report
}

// Shutdown closes the log file. heap files are closed by their owners.
func (mi *MinirelInstance) Shutdown(IsRemoveFiles bool) error {
	err := mi.log_manager.Close()
	if IsRemoveFiles {
		err = errors.CombineErrors(err, mi.fs.Remove(mi.log_manager.GetFileName()))
	}
	return err
}
