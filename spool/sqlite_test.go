package spool_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/spool"
)

var _ = Describe("SQLiteBackend", func() {
	It("should persist appended samples and reload them into a new spool", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "spool.sqlite3")

		backend, err := spool.NewSQLiteBackend(dbPath)
		Expect(err).NotTo(HaveOccurred())

		m := model.New()
		m.AddItem(model.NewNode("top clk", 0, 1, 0, nil))

		s, err := spool.NewDurable(m, backend)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Len()).To(Equal(0))

		Expect(s.Append(spool.Sample{
			Time: 0, Complete: true,
			Values: map[string][]uint32{"top clk": {0}},
		})).To(Succeed())
		Expect(s.Append(spool.Sample{
			Time: 10, Complete: false,
			Values: map[string][]uint32{"top clk": {1}},
		})).To(Succeed())

		Expect(backend.Close()).To(Succeed())

		reopened, err := spool.NewSQLiteBackend(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		m2 := model.New()
		m2.AddItem(model.NewNode("top clk", 0, 1, 0, nil))

		reloaded, err := spool.NewDurable(m2, reopened)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Len()).To(Equal(2))
		Expect(reloaded.CurrentTime()).To(Equal(s.CurrentTime()))
	})
})
