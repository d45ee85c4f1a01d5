package collect_logs

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"WebReplay/WebReplay-Go-Agent/internal/version"
)

// CollectLogs creates a zip archive with logs, capture artifacts, config,
// version, and system info for diagnostics. zipName is the output file name
// (e.g., "webreplay-logs-YYYYMMDD-HHMMSS.zip"). extraDirs are added
// recursively in addition to the default logs/ and captures/ directories.
func CollectLogs(zipName string, extraDirs ...string) error {
	zipFile, err := os.Create(zipName)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	logDir := "logs"
	logFiles, err := os.ReadDir(logDir)
	if err == nil { // logs/ may not exist
		for _, entry := range logFiles {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(logDir, entry.Name())
			if err := addFileToZip(zipWriter, path); err != nil {
				// Non-fatal, just skip
			}
		}
	}

	dirs := append([]string{"captures"}, extraDirs...)
	for _, dir := range dirs {
		_ = addDirToZip(zipWriter, dir) // Non-fatal
	}

	if _, err := os.Stat("config.json"); err == nil {
		_ = addFileToZip(zipWriter, "config.json") // Non-fatal
	}

	_ = addStringToZip(zipWriter, "version.txt", version.Version+"\n")
	_ = addStringToZip(zipWriter, "system-info.txt", getSystemInfo())

	return nil
}

func addFileToZip(zipWriter *zip.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w, err := zipWriter.Create(filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

func addStringToZip(zipWriter *zip.Writer, filename, content string) error {
	w, err := zipWriter.Create(filename)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(content))
	return err
}

func addDirToZip(zipWriter *zip.Writer, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return addFileToZip(zipWriter, path)
	})
}

func getSystemInfo() string {
	var b strings.Builder
	b.WriteString("OS: ")
	b.WriteString(runtime.GOOS)
	b.WriteString("\nArch: ")
	b.WriteString(runtime.GOARCH)
	b.WriteString("\nGo version: ")
	b.WriteString(runtime.Version())
	b.WriteString("\nNumCPU: ")
	b.WriteString(fmt.Sprintf("%d", runtime.NumCPU()))
	b.WriteString("\n")
	if hn, err := os.Hostname(); err == nil {
		b.WriteString("Hostname: ")
		b.WriteString(hn)
		b.WriteString("\n")
	}

	// Capture tool availability matters for support: a missing proxy or
	// capture binary is the most common cause of a silent agent.
	for _, tool := range []string{"mitmdump", "dumpcap"} {
		if path, err := exec.LookPath(tool); err == nil {
			b.WriteString(fmt.Sprintf("%s: %s\n", tool, path))
		} else {
			b.WriteString(fmt.Sprintf("%s: not found\n", tool))
		}
	}

	if runtime.GOOS == "linux" {
		if f, err := os.Open("/etc/os-release"); err == nil {
			defer f.Close()
			b.WriteString("/etc/os-release:\n")
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.HasPrefix(line, "NAME=") || strings.HasPrefix(line, "VERSION=") || strings.HasPrefix(line, "PRETTY_NAME=") {
					b.WriteString("  " + line + "\n")
				}
			}
		}
		if out, err := exec.Command("uname", "-r").Output(); err == nil {
			b.WriteString("Kernel: " + strings.TrimSpace(string(out)) + "\n")
		}
	}
	return b.String()
}
