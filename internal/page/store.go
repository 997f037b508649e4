package page

import (
	"context"
	"fmt"

	"autotest/internal/locator"
)

// Локаторы демо-магазина automationteststore.com. Первые кандидаты
// в некоторых списках устарели и оставлены, чтобы срабатывал fallback.
var (
	StoreSearchInput = []locator.Locator{
		locator.XPath(`//input[@id="WRONG_ID_DEMO"]`),
		locator.CSS("#filter_keyword"),
	}
	StoreSearchButton = []locator.Locator{
		locator.XPath(`//button[@class="WRONG_CLASS_DEMO"]`),
		locator.CSS(".button-in-search"),
	}
	StoreLogo = []locator.Locator{
		locator.CSS(".logo"),
	}
	StoreAccountLink = []locator.Locator{
		locator.XPath(`//a[@id="WRONG_ACCOUNT"]`),
		locator.CSS(`ul.nav.topcart a[data-id="menu_account"]`),
	}
	StoreEmailField = []locator.Locator{
		locator.XPath(`//input[@name="email"]`),
		locator.CSS("#loginFrm_loginname"),
	}
	StoreProductCards = []locator.Locator{
		locator.CSS(".thumbnails .thumbnail"),
		locator.CSS(".product-grid .thumbnail"),
	}
)

const storeLoginPath = "index.php?rt=account/login"

// StorePage page object демо-магазина.
type StorePage struct {
	*BasePage
}

func NewStorePage(base *BasePage) *StorePage {
	return &StorePage{BasePage: base}
}

// Open открывает base_url.
func (s *StorePage) Open(ctx context.Context) error {
	return s.NavigateTo(ctx, "/")
}

func (s *StorePage) OpenLogin(ctx context.Context) error {
	return s.NavigateTo(ctx, storeLoginPath)
}

func (s *StorePage) IsLogoVisible(ctx context.Context) bool {
	return s.IsVisible(ctx, StoreLogo, "Logo")
}

// Search вводит название товара и нажимает кнопку поиска.
func (s *StorePage) Search(ctx context.Context, product string) error {
	if err := s.Type(ctx, StoreSearchInput, product, "Search Input"); err != nil {
		return err
	}
	return s.Click(ctx, StoreSearchButton, "Search Button")
}

func (s *StorePage) SearchInputValue(ctx context.Context) (string, error) {
	el, err := s.FindElement(ctx, StoreSearchInput, "Search Input")
	if err != nil {
		return "", err
	}
	return el.InputValue()
}

func (s *StorePage) EnterEmail(ctx context.Context, email string) error {
	return s.Type(ctx, StoreEmailField, email, "Email Field")
}

// ResultsCount возвращает число карточек товаров на странице результатов
// по первому селектору, который что-то нашел.
func (s *StorePage) ResultsCount(ctx context.Context) (int, error) {
	if err := s.WaitForPageLoad(0); err != nil {
		return 0, err
	}
	for _, l := range StoreProductCards {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := s.Page().Locator(l.Value).Count()
		if err != nil {
			return 0, fmt.Errorf("count products: %w", err)
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, nil
}
