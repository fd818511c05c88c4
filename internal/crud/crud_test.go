package crud

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crudadmin/internal/hostapp"
	"crudadmin/internal/pagination"
	"crudadmin/internal/testutil"
)

func newAccountCRUD(t *testing.T) (*CRUD[hostapp.Account], func(n int) []*hostapp.Account) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	c, err := New[hostapp.Account](db)
	testutil.AssertNoError(t, err)

	seed := func(n int) []*hostapp.Account {
		out := make([]*hostapp.Account, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, testutil.CreateTestAccount(t, db))
		}
		return out
	}
	return c, seed
}

func TestNewParsesSchema(t *testing.T) {
	c, _ := newAccountCRUD(t)
	if c.Table() != "accounts" {
		t.Errorf("expected accounts table, got %q", c.Table())
	}
	if c.PrimaryKey() != "id" {
		t.Errorf("expected id primary key, got %q", c.PrimaryKey())
	}
}

func TestGetMulti(t *testing.T) {
	c, seed := newAccountCRUD(t)
	seed(5)
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		page, err := c.GetMulti(ctx, ListParams{})
		testutil.AssertNoError(t, err)
		if page.Page != 1 || page.PageSize != pagination.DefaultPageSize || page.TotalItems != 5 || page.TotalPages != 1 {
			t.Errorf("unexpected page metadata: %+v", page)
		}
		if page.Data[0].ID > page.Data[4].ID {
			t.Error("expected ascending primary key by default")
		}
	})

	t.Run("second page", func(t *testing.T) {
		page, err := c.GetMulti(ctx, ListParams{PageRequest: pagination.PageRequest{Page: 2, PageSize: 2}})
		testutil.AssertNoError(t, err)
		if len(page.Data) != 2 || page.TotalPages != 3 {
			t.Errorf("expected 2 rows of 3 pages, got %d rows, %d pages", len(page.Data), page.TotalPages)
		}
	})

	t.Run("sort by column descending", func(t *testing.T) {
		page, err := c.GetMulti(ctx, ListParams{Sort: "name", Order: "desc"})
		testutil.AssertNoError(t, err)
		if page.Data[0].Name < page.Data[len(page.Data)-1].Name {
			t.Error("expected names in descending order")
		}
	})

	t.Run("unknown sort column", func(t *testing.T) {
		_, err := c.GetMulti(ctx, ListParams{Sort: "id; DROP TABLE accounts"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("empty page past the end", func(t *testing.T) {
		page, err := c.GetMulti(ctx, ListParams{PageRequest: pagination.PageRequest{Page: 9, PageSize: 10}})
		testutil.AssertNoError(t, err)
		if page.Data == nil || len(page.Data) != 0 {
			t.Errorf("expected empty non-nil data, got %v", page.Data)
		}
	})
}

func TestGetCreateUpdateDelete(t *testing.T) {
	c, _ := newAccountCRUD(t)
	ctx := context.Background()

	row := &hostapp.Account{Name: "Savings", Type: hostapp.AccountTypeCash, IsActive: true}
	testutil.AssertNoError(t, c.Create(ctx, row))
	id := fmt.Sprint(row.ID)

	got, err := c.Get(ctx, id)
	testutil.AssertNoError(t, err)
	if got.Currency != "USD" {
		t.Errorf("expected model hooks to run, got currency %q", got.Currency)
	}

	got.Name = "Renamed"
	testutil.AssertNoError(t, c.Update(ctx, got))
	got, err = c.Get(ctx, id)
	testutil.AssertNoError(t, err)
	if got.Name != "Renamed" {
		t.Errorf("expected update to persist, got %q", got.Name)
	}

	testutil.AssertNoError(t, c.Delete(ctx, id))
	_, err = c.Get(ctx, id)
	testutil.AssertAppError(t, err, "NOT_FOUND")
	testutil.AssertAppError(t, c.Delete(ctx, id), "NOT_FOUND")
}

func TestDeleteManyAndCount(t *testing.T) {
	c, seed := newAccountCRUD(t)
	rows := seed(3)
	ctx := context.Background()

	n, err := c.DeleteMany(ctx, []string{fmt.Sprint(rows[0].ID), fmt.Sprint(rows[1].ID), "999999"})
	testutil.AssertNoError(t, err)
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	n, err = c.DeleteMany(ctx, nil)
	testutil.AssertNoError(t, err)
	if n != 0 {
		t.Errorf("expected no-op, got %d", n)
	}

	count, err := c.Count(ctx)
	testutil.AssertNoError(t, err)
	if count != 1 {
		t.Errorf("expected 1 row left, got %d", count)
	}
}

func TestGetMany(t *testing.T) {
	c, seed := newAccountCRUD(t)
	rows := seed(3)
	ctx := context.Background()

	got, err := c.GetMany(ctx, []string{fmt.Sprint(rows[2].ID), fmt.Sprint(rows[0].ID), "999999"})
	testutil.AssertNoError(t, err)
	if len(got) != 2 || got[0].ID != rows[0].ID || got[1].ID != rows[2].ID {
		t.Errorf("expected rows %d and %d in key order, got %+v", rows[0].ID, rows[2].ID, got)
	}

	got, err = c.GetMany(ctx, nil)
	testutil.AssertNoError(t, err)
	if len(got) != 0 {
		t.Errorf("expected nothing for no ids, got %d", len(got))
	}
}

func TestTransactionRollsBack(t *testing.T) {
	c, seed := newAccountCRUD(t)
	rows := seed(2)
	ctx := context.Background()
	boom := errors.New("boom")

	err := c.Transaction(ctx, func(tx *CRUD[hostapp.Account]) error {
		if _, err := tx.DeleteMany(ctx, []string{fmt.Sprint(rows[0].ID), fmt.Sprint(rows[1].ID)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	count, err := c.Count(ctx)
	testutil.AssertNoError(t, err)
	if count != 2 {
		t.Errorf("expected rollback to keep 2 rows, got %d", count)
	}
}
