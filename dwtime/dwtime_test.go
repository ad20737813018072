package dwtime

import "testing"

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestDistanceFromDSTWRGoldenPath(t *testing.T) {
	// Ra=2000, Rb=2000, Da=1000, Db=1000 dtu, chosen relative to
	// arbitrary base timestamps.
	const pollTX = 1_000_000
	const respRX = pollTX + 2000
	const finalTX = respRX + 1000
	const respTX = 5_000_000
	const pollRX = respTX - 1000
	const finalRX = respTX + 2000

	got := DistanceFromDSTWR(pollTX, respRX, finalTX, pollRX, respTX, finalRX)
	const want = 2.345
	if !approxEqual(got, want, 0.01) {
		t.Errorf("distance = %v, want ~%v", got, want)
	}
}

func TestDistanceClampsNegativeToZero(t *testing.T) {
	// Ra+Rb+Da+Db > 0 but Ra*Rb < Da*Db: negative time of flight.
	got := DistanceFromDSTWR(0, 100, 200, 0, 1_000_000, 1_000_100)
	if got != 0 {
		t.Errorf("distance = %v, want 0", got)
	}
}

func TestDistanceAcrossUint32Wraparound(t *testing.T) {
	// A's clock (poll_tx, resp_rx, final_tx) rolls past the 32-bit
	// boundary between POLL and RESP: resp_rx is numerically smaller
	// than poll_tx even though it happened later. Naive subtraction
	// without modulo-2^32 truncation would go deeply negative; the
	// correct wrapped elapsed time is still 2000 dtu.
	const pollTX = 0xFFFFFFF0    // 4294967280
	const respRX = 1984          // wrapped: (pollTX+2000) mod 2^32
	const finalTX = respRX + 1000 // same clock domain as poll/resp

	const pollRX = 5_000_000 // B's independent clock
	const respTX = pollRX + 1000
	const finalRX = respTX + 2000

	got := DistanceFromDSTWR(pollTX, respRX, finalTX, pollRX, respTX, finalRX)
	if got < 0 {
		t.Fatalf("distance = %v, want non-negative", got)
	}
	const want = 2.345
	if !approxEqual(got, want, 0.01) {
		t.Errorf("distance = %v, want ~%v", got, want)
	}
}

func TestRSSIDBmNoCorrection(t *testing.T) {
	got := RSSIDBm(2048, 1024)
	const want = -97.64
	if !approxEqual(got, want, 0.05) {
		t.Errorf("RSSIDBm = %v, want ~%v", got, want)
	}
}

func TestRSSIDBmWithCorrection(t *testing.T) {
	got := RSSIDBm(32768, 256)
	const want = -56.76
	if !approxEqual(got, want, 0.05) {
		t.Errorf("RSSIDBm = %v, want ~%v", got, want)
	}
}

func TestScheduleTXAtAndPredictedTimestamp(t *testing.T) {
	const baseRxTS = 1_000_000_000
	const delayUUS = 5000
	scheduled := ScheduleTXAt(baseRxTS, delayUUS)
	want := uint32((uint64(baseRxTS) + uint64(delayUUS)*UUSToDTU) >> 8)
	if scheduled != want {
		t.Fatalf("scheduled = %#x, want %#x", scheduled, want)
	}
	ts := PredictedTXTimestamp(scheduled, TxAntennaDelay)
	wantTS := (uint64(scheduled&0xFFFFFFFE) << 8) + TxAntennaDelay
	if ts != wantTS {
		t.Fatalf("predicted ts = %#x, want %#x", ts, wantTS)
	}
}
