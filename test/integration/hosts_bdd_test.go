//go:build integration

package integration

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/infra"
	"github.com/humaxai2025/flowmode/test/fixtures"
)

var _ = Describe("Hosts file guard", func() {
	var (
		tmpDir   string
		hosts    *fixtures.FakeHostsFile
		mode     *infra.ExecModeConfig
		pm       domain.ProcessManager
		newGuard func() *infra.HostsFile
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "flowmode-integration-*")
		Expect(err).NotTo(HaveOccurred())

		hosts, err = fixtures.NewFakeHostsFile(tmpDir, fixtures.SampleHosts)
		Expect(err).NotTo(HaveOccurred())

		mode = infra.DetectExecMode(hosts.Path, hosts.DataDir)
		pm = infra.NewProcessManager()
		newGuard = func() *infra.HostsFile {
			return infra.NewHostsFile(mode.HostsPath, "", infra.NewMarkerFile(mode), pm, zap.NewNop())
		}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Acquire and Release", func() {
		Context("with a block list", func() {
			It("should redirect the domains and restore the exact original bytes", func() {
				guard := newGuard()

				backup, err := guard.Acquire(context.Background(), domain.BlockRequest{
					Domains: []string{"news.ycombinator.com", "lobste.rs"},
				})
				Expect(err).NotTo(HaveOccurred())

				blocked := hosts.Read()
				Expect(blocked).To(HavePrefix(fixtures.SampleHosts))
				Expect(blocked).To(ContainSubstring("127.0.0.1 news.ycombinator.com # flowmode\r\n"), "line endings follow the existing CRLF")
				Expect(blocked).To(ContainSubstring("127.0.0.1 lobste.rs # flowmode"))

				Expect(guard.Release(backup)).To(Succeed())
				Expect(hosts.Read()).To(Equal(fixtures.SampleHosts))
				Expect(backup.Released()).To(BeTrue())
			})
		})

		Context("in allow-list mode", func() {
			It("should block distractions except the allowed ones", func() {
				guard := newGuard()

				backup, err := guard.Acquire(context.Background(), domain.BlockRequest{
					AllowMode: true,
					AllowList: []string{"youtube.com"},
				})
				Expect(err).NotTo(HaveOccurred())

				blocked := hosts.Read()
				Expect(blocked).To(ContainSubstring("127.0.0.1 reddit.com # flowmode"))
				Expect(blocked).NotTo(ContainSubstring("youtube.com"))

				Expect(guard.Release(backup)).To(Succeed())
				Expect(hosts.Read()).To(Equal(fixtures.SampleHosts))
			})
		})

		Context("when released twice", func() {
			It("should refuse the second release and leave the file alone", func() {
				guard := newGuard()
				backup, err := guard.Acquire(context.Background(), domain.BlockRequest{Domains: []string{"x.com"}})
				Expect(err).NotTo(HaveOccurred())
				Expect(guard.Release(backup)).To(Succeed())

				Expect(os.WriteFile(hosts.Path, []byte("edited by user\n"), 0644)).To(Succeed())
				Expect(guard.Release(backup)).To(MatchError(domain.ErrBackupReleased))
				Expect(hosts.Read()).To(Equal("edited by user\n"))
			})
		})
	})

	Describe("Crash recovery", func() {
		Context("when a session died with the hosts file blocked", func() {
			It("should restore the original from the marker backup", func() {
				crashed := newGuard()
				_, err := crashed.Acquire(context.Background(), domain.BlockRequest{Domains: []string{"reddit.com"}})
				Expect(err).NotTo(HaveOccurred())
				Expect(hosts.Read()).NotTo(Equal(fixtures.SampleHosts))

				// A fresh guard stands in for the next flowmode process.
				marker, err := newGuard().Recover(false)
				Expect(err).NotTo(HaveOccurred())
				Expect(marker.HostsPath).To(Equal(hosts.Path))
				Expect(hosts.Read()).To(Equal(fixtures.SampleHosts))

				_, err = infra.NewMarkerFile(mode).Load()
				Expect(err).To(MatchError(domain.ErrNoMarker))
			})
		})

		Context("when nothing was left behind", func() {
			It("should report that there is no marker", func() {
				_, err := newGuard().Recover(false)
				Expect(err).To(MatchError(domain.ErrNoMarker))
				Expect(hosts.Read()).To(Equal(fixtures.SampleHosts))
			})
		})
	})
})
