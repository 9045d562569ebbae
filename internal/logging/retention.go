package logging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const retentionInterval = time.Minute

// retentionJanitor keeps the total size of *.log and *.log.gz files in a directory under a
// byte budget by removing the oldest files first. The active log file is never removed.
type retentionJanitor struct {
	dir       string
	maxBytes  int64
	activeLog string
	cancel    context.CancelFunc
	done      chan struct{}
}

// startRetentionJanitor returns nil when no budget is configured.
func startRetentionJanitor(dir string, maxTotalSizeMB int, activeLog string) *retentionJanitor {
	dir = strings.TrimSpace(dir)
	if maxTotalSizeMB <= 0 || dir == "" {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &retentionJanitor{
		dir:       filepath.Clean(dir),
		maxBytes:  int64(maxTotalSizeMB) << 20,
		activeLog: cleanOrEmpty(activeLog),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go j.run(ctx)
	return j
}

func (j *retentionJanitor) stop() {
	if j == nil {
		return
	}
	j.cancel()
	<-j.done
}

func (j *retentionJanitor) run(ctx context.Context) {
	defer close(j.done)
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		removed, err := pruneLogDir(j.dir, j.maxBytes, j.activeLog)
		if err != nil {
			log.WithError(err).Warn("logging: failed to enforce log directory size limit")
		} else if removed > 0 {
			log.Debugf("logging: removed %d old log file(s) from %s", removed, j.dir)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type logFileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// pruneLogDir deletes the oldest log files in dir until their total size is at most maxBytes,
// skipping activeLog. It returns the number of files removed.
func pruneLogDir(dir string, maxBytes int64, activeLog string) (int, error) {
	if maxBytes <= 0 || strings.TrimSpace(dir) == "" {
		return 0, nil
	}
	files, total, err := listLogFiles(filepath.Clean(dir))
	if err != nil || total <= maxBytes {
		return 0, err
	}

	sort.Slice(files, func(a, b int) bool { return files[a].modTime.Before(files[b].modTime) })

	activeLog = cleanOrEmpty(activeLog)
	removed := 0
	for _, file := range files {
		if total <= maxBytes {
			break
		}
		if file.path == activeLog {
			continue
		}
		if errRemove := os.Remove(file.path); errRemove != nil {
			log.WithError(errRemove).Warnf("logging: failed to remove old log file: %s", filepath.Base(file.path))
			continue
		}
		total -= file.size
		removed++
	}
	return removed, nil
}

func listLogFiles(dir string) ([]logFileInfo, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	var (
		files []logFileInfo
		total int64
	)
	for _, entry := range entries {
		if entry.IsDir() || !isLogFileName(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, logFileInfo{
			path:    filepath.Join(dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	return files, total, nil
}

func isLogFileName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}

func cleanOrEmpty(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
