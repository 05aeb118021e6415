package maple

import (
	"github.com/ValentinKolb/dBind/lib/db"
	dbtesting "github.com/ValentinKolb/dBind/lib/db/testing"
	"testing"
)

func Test(t *testing.T) {
	dbtesting.RunRecordDBTests(t, "MapleDB", func() db.RecordDB {
		return NewMapleDB(nil)
	})
}

func TestSingleShard(t *testing.T) {
	dbtesting.RunRecordDBTests(t, "MapleDB(1 shard)", func() db.RecordDB {
		return NewMapleDB(&DBOptions{NumShards: 1})
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunRecordDBBenchmarks(t, "MapleDB", func() db.RecordDB {
		return NewMapleDB(nil)
	})
}
